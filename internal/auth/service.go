package auth

import (
	"errors"
	"fmt"
	"strings"

	"billops/internal"
	"billops/internal/log"
	"billops/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("사번 또는 비밀번호가 올바르지 않습니다")
	ErrPasswordTooShort   = fmt.Errorf("비밀번호는 %d자 이상이어야 합니다", MinPasswordLength)
	ErrNoChanges          = errors.New("변경할 항목이 없습니다")
)

const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)

// ProfileUpdate carries the fields a user may change; nil means unchanged.
type ProfileUpdate struct {
	Name     *string `json:"name"`
	Position *string `json:"position"`
	Password *string `json:"password"`
}

type Service struct {
	db     *storage.DB
	logger *log.Logger
}

func NewService(db *storage.DB, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{db: db, logger: logger.WithComponent(log.ComponentAuth)}
}

// Login checks the employee's password. Unknown ids and wrong passwords are
// indistinguishable to the caller.
func (s *Service) Login(employeeID, password string) (internal.AdminUser, error) {
	employeeID = strings.TrimSpace(employeeID)
	if employeeID == "" || password == "" {
		return internal.AdminUser{}, ErrInvalidCredentials
	}
	u, err := s.db.GetAdminUser(employeeID)
	if errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("login for unknown employee", log.FieldEmployeeID, employeeID)
		return internal.AdminUser{}, ErrInvalidCredentials
	}
	if err != nil {
		return internal.AdminUser{}, err
	}
	if !VerifyPassword(password, u.PasswordHash) {
		s.logger.Warn("login with wrong password", log.FieldEmployeeID, employeeID)
		return internal.AdminUser{}, ErrInvalidCredentials
	}
	s.logger.Info("login ok", log.FieldOperation, log.OpLogin, log.FieldEmployeeID, employeeID)
	return u, nil
}

func (s *Service) UpdateProfile(employeeID string, p ProfileUpdate) (internal.AdminUser, error) {
	if p.Name == nil && p.Position == nil && p.Password == nil {
		return internal.AdminUser{}, ErrNoChanges
	}
	u, err := s.db.GetAdminUser(employeeID)
	if err != nil {
		return internal.AdminUser{}, err
	}
	if p.Name != nil {
		u.Name = strings.TrimSpace(*p.Name)
	}
	if p.Position != nil {
		u.Position = strings.TrimSpace(*p.Position)
	}
	if p.Password != nil {
		hash, err := HashPassword(*p.Password)
		if err != nil {
			return internal.AdminUser{}, err
		}
		u.PasswordHash = hash
	}
	if err := s.db.UpsertAdminUser(u); err != nil {
		return internal.AdminUser{}, err
	}
	s.logger.Info("profile updated", log.FieldEmployeeID, employeeID, "password_changed", p.Password != nil)
	return s.db.GetAdminUser(employeeID)
}

// CreateUser adds or replaces an admin user with a fresh password hash.
func (s *Service) CreateUser(u internal.AdminUser, password string) error {
	u.EmployeeID = strings.TrimSpace(u.EmployeeID)
	if u.EmployeeID == "" {
		return errors.New("employee id is required")
	}
	switch u.Role {
	case "":
		u.Role = RoleOperator
	case RoleAdmin, RoleOperator:
	default:
		return fmt.Errorf("unknown role %q", u.Role)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return s.db.UpsertAdminUser(u)
}

// Role returns the employee's role, "" when the id is empty or unknown.
func (s *Service) Role(employeeID string) (string, error) {
	if strings.TrimSpace(employeeID) == "" {
		return "", nil
	}
	u, err := s.db.GetAdminUser(employeeID)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return u.Role, nil
}
