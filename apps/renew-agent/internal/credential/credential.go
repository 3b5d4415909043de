// Package credential はUPassBCログイン用アカウントの保管と取り出しを提供する。
//
// ユーザー名と学校はValkeyのハッシュに、パスワードはNaCl secretboxで
// 封緘した上で別キーに保存する。
package credential

//go:generate mockgen -source=credential.go -destination=../mocks/mock_credential.go -package=mocks

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/school"
	"github.com/oyaguma3/upass-renew-agent/apps/renew-agent/internal/store"
	"github.com/oyaguma3/upass-renew-agent/pkg/apperr"
)

const nonceSize = 24

// センチネルエラー
var (
	// ErrNotFound はアカウントが未登録、または一部が欠けている場合のエラー
	ErrNotFound = apperr.ErrAccountNotFound

	// ErrCorrupted は封緘済みパスワードを開封できない場合のエラー
	ErrCorrupted = errors.New("sealed password corrupted")

	// ErrInvalidAccount は保存しようとしたアカウントが不正な場合のエラー
	ErrInvalidAccount = errors.New("invalid account")
)

// Account はログインに使うアカウント
type Account struct {
	Username string
	Password string
	School   school.School
}

// String はパスワードを含めない表現を返す。
func (a Account) String() string {
	return fmt.Sprintf("Account{Username:%s School:%s}", a.Username, a.School.ShortName)
}

// Provider はアカウントの取り出しを定義する
type Provider interface {
	// Load はアカウントを取得する。未登録時はErrNotFoundを返す
	Load(ctx context.Context) (Account, error)
}

// Vault はValkeyに封緘保存されたアカウントを扱う
type Vault struct {
	store store.AccountStore
	key   *[32]byte
	now   func() time.Time
}

// NewVault は新しいVaultを生成する。
func NewVault(s store.AccountStore, key *[32]byte) *Vault {
	return &Vault{store: s, key: key, now: time.Now}
}

// Load はアカウントを取得してパスワードを開封する。
func (v *Vault) Load(ctx context.Context) (Account, error) {
	rec, err := v.store.GetAccount(ctx)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}

	s, err := school.ByID(rec.SchoolID)
	if err != nil {
		return Account{}, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	password, err := v.open(rec.SealedPassword)
	if err != nil {
		return Account{}, err
	}
	return Account{Username: rec.Username, Password: password, School: s}, nil
}

// Save はアカウントを封緘して保存する。既存のアカウントは置き換える。
func (v *Vault) Save(ctx context.Context, a Account) error {
	if a.Username == "" {
		return fmt.Errorf("%w: %w", ErrInvalidAccount,
			apperr.Invalid("username", apperr.ErrEmptyCredential, "must not be empty"))
	}
	if a.Password == "" {
		return fmt.Errorf("%w: %w", ErrInvalidAccount,
			apperr.Invalid("password", apperr.ErrEmptyCredential, "must not be empty"))
	}
	if _, err := school.ByID(a.School.ID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAccount,
			apperr.Invalid("school", apperr.ErrInvalidSchool, "%s", err))
	}

	sealed, err := v.seal(a.Password)
	if err != nil {
		return err
	}
	return v.store.SaveAccount(ctx, &store.AccountRecord{
		Username:       a.Username,
		SchoolID:       a.School.ID,
		UpdatedAt:      v.now(),
		SealedPassword: sealed,
	})
}

// Delete はアカウントを削除する。
func (v *Vault) Delete(ctx context.Context) error {
	return v.store.DeleteAccount(ctx)
}

func (v *Vault) seal(password string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(password), &nonce, v.key)
	return base64.StdEncoding.EncodeToString(box), nil
}

func (v *Vault) open(sealed string) (string, error) {
	box, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(box) < nonceSize+secretbox.Overhead {
		return "", ErrCorrupted
	}
	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, v.key)
	if !ok {
		return "", ErrCorrupted
	}
	return string(plain), nil
}
