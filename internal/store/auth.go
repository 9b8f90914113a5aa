package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const authSessionTTL = 12 * time.Hour

const teacherKeyHashKey = "teacher_key_hash"

// SetTeacherKey hashes and stores the dashboard access key.
func (s *Store) SetTeacherKey(key string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.SetMetadata(teacherKeyHashKey, string(hash))
}

// HasTeacherKey reports whether an access key has been configured.
func (s *Store) HasTeacherKey() (bool, error) {
	hash, err := s.GetMetadata(teacherKeyHashKey)
	if err != nil {
		return false, err
	}
	return hash != "", nil
}

// VerifyTeacherKey checks a submitted key against the stored hash.
func (s *Store) VerifyTeacherKey(key string) (bool, error) {
	hash, err := s.GetMetadata(teacherKeyHashKey)
	if err != nil {
		return false, err
	}
	if hash == "" {
		return false, nil
	}
	err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(key))
	if err == bcrypt.ErrMismatchedHashAndPassword {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateAuthSession creates a dashboard token after a successful unlock.
func (s *Store) CreateAuthSession() (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	now := time.Now()
	_, err = s.db.Exec(
		`INSERT INTO auth_sessions (id, created_at, expires_at) VALUES (?, ?, ?)`,
		token, now, now.Add(authSessionTTL),
	)
	if err != nil {
		return "", err
	}
	return token, nil
}

// ValidAuthSession reports whether the token is known and unexpired.
// Expired tokens are deleted on sight.
func (s *Store) ValidAuthSession(token string) (bool, error) {
	var expiresAt time.Time
	err := s.db.QueryRow(
		`SELECT expires_at FROM auth_sessions WHERE id = ?`, token,
	).Scan(&expiresAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if time.Now().After(expiresAt) {
		_ = s.DeleteAuthSession(token)
		return false, nil
	}
	return true, nil
}

// DeleteAuthSession removes a dashboard token.
func (s *Store) DeleteAuthSession(token string) error {
	_, err := s.db.Exec(`DELETE FROM auth_sessions WHERE id = ?`, token)
	return err
}

// CleanupExpiredSessions removes all expired dashboard tokens.
func (s *Store) CleanupExpiredSessions() error {
	_, err := s.db.Exec(`DELETE FROM auth_sessions WHERE expires_at < ?`, time.Now())
	return err
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
