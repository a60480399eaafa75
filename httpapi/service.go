package httpapi

import (
	"context"

	marketAuth "github.com/MrEthical07/marketAuth"
	"github.com/MrEthical07/marketAuth/jwt"
)

// Service is the engine surface the handlers call. *marketAuth.Engine
// implements it.
type Service interface {
	Register(ctx context.Context, req marketAuth.RegisterRequest) (*marketAuth.RegisterResult, error)
	VerifyEmailByToken(ctx context.Context, token string) (*marketAuth.AuthResult, error)
	GetVerificationInfo(ctx context.Context, token string) (*marketAuth.VerificationInfo, error)
	ResendVerificationEmail(ctx context.Context, token, proof string) (*marketAuth.ResendResult, error)
	LogIn(ctx context.Context, email, password string) (*marketAuth.AuthResult, error)
	LogOut(ctx context.Context, refreshToken string)
	RefreshAccessToken(ctx context.Context, refreshToken string) (*marketAuth.AuthResult, error)
	SendPasswordResetEmail(ctx context.Context, email, proof string) (*marketAuth.ResetRequestResult, error)
	VerifyPasswordResetToken(ctx context.Context, token string) (*marketAuth.ResetTarget, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
	ParseAccessToken(ctx context.Context, token string) (*jwt.AccessClaims, error)
}

var _ Service = (*marketAuth.Engine)(nil)
