package service

import (
	"context"

	"github.com/w802474/Labeltool-fakeDataGenerator-sub000/model"
)

// SessionStore 会话快照存储。Get 在会话不存在时返回 ErrSessionNotFound。
type SessionStore interface {
	Get(ctx context.Context, id string) (*model.Session, error)
	Save(ctx context.Context, s *model.Session) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
	Close() error
}
