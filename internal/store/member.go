package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/tinnguyen0812/Lotus-miles-earn-sub000/internal/model"
)

type MemberStore struct {
	db *sql.DB
}

func NewMemberStore(db *sql.DB) *MemberStore {
	return &MemberStore{db: db}
}

const memberCols = `id, email, name, role, tier, created_at`

func scanMember(scanner interface{ Scan(...any) error }) (*model.Member, error) {
	var m model.Member
	err := scanner.Scan(&m.ID, &m.Email, &m.Name, &m.Role, &m.Tier, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Create registers a member with a bcrypt-hashed password.
func (s *MemberStore) Create(ctx context.Context, email, password, name, role string) (*model.Member, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO members (email, password_hash, name, role) VALUES (?, ?, ?, ?)`,
		email, string(hash), name, role,
	)
	if err != nil {
		return nil, fmt.Errorf("insert member: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *MemberStore) GetByID(ctx context.Context, id int64) (*model.Member, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+memberCols+` FROM members WHERE id = ?`, id)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (s *MemberStore) GetByEmail(ctx context.Context, email string) (*model.Member, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := s.db.QueryRowContext(ctx, `SELECT `+memberCols+` FROM members WHERE email = ?`, email)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member by email: %w", err)
	}
	return m, nil
}

// Authenticate checks email/password and returns the member, or nil when the
// credentials do not match.
func (s *MemberStore) Authenticate(ctx context.Context, email, password string) (*model.Member, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var m model.Member
	var hash string
	err := s.db.QueryRowContext(ctx,
		`SELECT `+memberCols+`, password_hash FROM members WHERE email = ?`, email,
	).Scan(&m.ID, &m.Email, &m.Name, &m.Role, &m.Tier, &m.CreatedAt, &hash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member credentials: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, nil
	}
	return &m, nil
}

// SetTier updates a member's lotusmiles tier label.
func (s *MemberStore) SetTier(ctx context.Context, id int64, tier string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE members SET tier = ? WHERE id = ?`, tier, id)
	if err != nil {
		return fmt.Errorf("set tier: %w", err)
	}
	return nil
}
