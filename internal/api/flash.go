package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	flashCookie = "flash"
	flashTTL    = 10 * time.Minute
	// Browsers drop cookies above 4096 bytes including name and attributes.
	maxFlashToken = 3800
)

type flashClaims struct {
	Messages []string `json:"messages"`
	jwt.RegisteredClaims
}

// flashStore keeps one-shot messages in a signed cookie between a POST and
// the redirected GET.
type flashStore struct {
	secret []byte
	now    func() time.Time
}

func newFlashStore(secret string) *flashStore {
	return &flashStore{secret: []byte(secret), now: time.Now}
}

// add queues messages behind any not yet shown. When the cookie would grow
// too large, messages are dropped from just before the last one, which
// usually carries the batch outcome.
func (f *flashStore) add(w http.ResponseWriter, r *http.Request, messages ...string) error {
	kept := append(f.read(r), messages...)
	var token string
	for dropped := 0; ; dropped++ {
		queued := kept
		if dropped > 0 {
			last := len(kept) - 1
			queued = make([]string, 0, len(kept)+1)
			queued = append(queued, kept[:last]...)
			queued = append(queued, fmt.Sprintf("(%d more messages not shown)", dropped), kept[last])
		}
		var err error
		if token, err = f.sign(queued); err != nil {
			return err
		}
		if len(token) <= maxFlashToken || len(kept) <= 1 {
			break
		}
		kept = append(kept[:len(kept)-2], kept[len(kept)-1])
	}

	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(flashTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// pop returns the queued messages and clears the cookie.
func (f *flashStore) pop(w http.ResponseWriter, r *http.Request) []string {
	messages := f.read(r)
	if _, err := r.Cookie(flashCookie); err == nil {
		http.SetCookie(w, &http.Cookie{Name: flashCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	}
	return messages
}

func (f *flashStore) sign(messages []string) (string, error) {
	now := f.now()
	claims := flashClaims{
		Messages: messages,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(flashTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(f.secret)
}

func (f *flashStore) read(r *http.Request) []string {
	cookie, err := r.Cookie(flashCookie)
	if err != nil || cookie.Value == "" {
		return nil
	}
	token, err := jwt.ParseWithClaims(cookie.Value, &flashClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return f.secret, nil
	}, jwt.WithTimeFunc(f.now))
	if err != nil || !token.Valid {
		return nil
	}
	claims, ok := token.Claims.(*flashClaims)
	if !ok {
		return nil
	}
	return claims.Messages
}
