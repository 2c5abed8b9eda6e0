package storage

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/candlepin/candlepin-sub033/storage/model"
)

// UsersStorage returns a UsersStorage
func (s *Storage) UsersStorage() *UsersStorage {
	return &UsersStorage{db: s.db, params: s.userParams}
}

// UsersStorage implements model.UsersStore; passwords are hashed with
// argon2id using params
type UsersStorage struct {
	db     *gorm.DB
	params Argon2idParams
}

func withoutHash(u *model.User) *model.User {
	u.PasswordHash = ""
	return u
}

// Count returns the number of users
func (s *UsersStorage) Count() (int64, error) {
	var n int64
	err := s.db.Model(&model.User{}).Count(&n).Error
	return n, errors.Wrap(err, "users: count failed")
}

// List returns all users ordered by username
func (s *UsersStorage) List() ([]model.User, error) {
	var users []model.User
	if err := s.db.Omit("password_hash").Order("username").Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "users: list failed")
	}
	return users, nil
}

// Get returns the user with the passed username or a NotFoundError
func (s *UsersStorage) Get(username string) (*model.User, error) {
	u, err := s.byName(username)
	if err != nil {
		return nil, err
	}
	return withoutHash(u), nil
}

func (s *UsersStorage) byName(username string) (*model.User, error) {
	u := &model.User{}
	err := s.db.Where("username = ?", username).Take(u).Error
	if isNotFound(err) {
		return nil, model.NotFoundErrorFmt("user not found: %s", username)
	}
	if err != nil {
		return nil, errors.Wrap(err, "users: get failed")
	}
	return u, nil
}

// Create stores a new user; an existing username gives an AlreadyExistsError
func (s *UsersStorage) Create(nu model.NewUser) (*model.User, error) {
	if nu.Username == "" || nu.Password == "" {
		return nil, errors.New("users: username and password are required")
	}
	hash, err := hashPasswordArgon2id(nu.Password, s.params)
	if err != nil {
		return nil, err
	}
	u := &model.User{
		Username:     nu.Username,
		PasswordHash: hash,
		DisplayName:  nu.DisplayName,
	}
	if err = s.db.Create(u).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, model.AlreadyExistsErrorFmt("user already exists: %s", nu.Username)
		}
		return nil, errors.Wrap(err, "users: create failed")
	}
	return withoutHash(u), nil
}

// Update applies update to the user with the passed username
func (s *UsersStorage) Update(username string, update model.UserUpdate) (*model.User, error) {
	u, err := s.byName(username)
	if err != nil {
		return nil, err
	}
	if update.DisplayName != nil {
		u.DisplayName = *update.DisplayName
	}
	if update.Disabled != nil {
		u.Disabled = *update.Disabled
	}
	if update.Password != nil {
		if *update.Password == "" {
			return nil, errors.New("users: password cannot be empty")
		}
		if u.PasswordHash, err = hashPasswordArgon2id(*update.Password, s.params); err != nil {
			return nil, err
		}
	}
	if err = s.db.Save(u).Error; err != nil {
		return nil, errors.Wrap(err, "users: update failed")
	}
	return withoutHash(u), nil
}

// Delete removes the user with the passed username
func (s *UsersStorage) Delete(username string) error {
	res := s.db.Where("username = ?", username).Delete(&model.User{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "users: delete failed")
	}
	if res.RowsAffected == 0 {
		return model.NotFoundErrorFmt("user not found: %s", username)
	}
	return nil
}

// Authenticate verifies the password of an enabled user. A hash made with
// other parameters than the configured ones is replaced on success.
func (s *UsersStorage) Authenticate(username, password string) (*model.User, error) {
	u, err := s.byName(username)
	if err != nil {
		var notFound model.NotFoundError
		if errors.As(err, &notFound) {
			return nil, model.ErrInvalidCredentials
		}
		return nil, err
	}
	if u.Disabled {
		return nil, model.ErrUserDisabled
	}
	if ok, err := verifyPasswordArgon2id(u.PasswordHash, password); err != nil || !ok {
		return nil, model.ErrInvalidCredentials
	}
	s.rehash(u, password)
	return withoutHash(u), nil
}

func (s *UsersStorage) rehash(u *model.User, password string) {
	stored, err := extractArgon2idParams(u.PasswordHash)
	if err != nil || argon2idParamsEqual(stored, s.params) {
		return
	}
	hash, err := hashPasswordArgon2id(password, s.params)
	if err != nil {
		return
	}
	_ = s.db.Model(&model.User{}).Where("id = ?", u.ID).Update("password_hash", hash).Error
}
