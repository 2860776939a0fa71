package userctx

import "context"

type contextKey string

const userContextKey contextKey = "user_name"

// AnonymousUser используется, когда запрос пришёл без аутентификации.
const AnonymousUser = "anonymous"

func WithUser(ctx context.Context, userName string) context.Context {
	return context.WithValue(ctx, userContextKey, userName)
}

func GetUser(ctx context.Context) (string, bool) {
	userName, ok := ctx.Value(userContextKey).(string)
	return userName, ok
}

// UserOrAnonymous возвращает имя пользователя из контекста либо anonymous.
func UserOrAnonymous(ctx context.Context) string {
	if userName, ok := GetUser(ctx); ok && userName != "" {
		return userName
	}
	return AnonymousUser
}
