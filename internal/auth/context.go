package auth

import "context"

type operatorKey struct{}

func ContextWithOperator(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, operatorKey{}, c)
}

func OperatorFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(operatorKey{}).(*Claims)
	return c, ok && c != nil
}
