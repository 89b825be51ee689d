package persistence

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSchemaMigrator struct {
	mock.Mock
}

func (m *MockSchemaMigrator) Up() error {
	return m.Called().Error(0)
}

func (m *MockSchemaMigrator) Version() (uint, bool, error) {
	args := m.Called()
	return args.Get(0).(uint), args.Bool(1), args.Error(2)
}

func (m *MockSchemaMigrator) Close() (error, error) {
	args := m.Called()
	return args.Error(0), args.Error(1)
}

func TestRunMigrations_InputValidation(t *testing.T) {
	t.Run("EmptyMigrationsPath", func(t *testing.T) {
		err := RunMigrations(newTestLogger(), "postgres://test", "")
		assert.EqualError(t, err, "migrations path cannot be empty")
	})

	t.Run("EmptyDatabaseURL", func(t *testing.T) {
		err := RunMigrations(newTestLogger(), "", "migrations/postgres")
		assert.EqualError(t, err, "database URL cannot be empty")
	})
}

func TestApplyMigrations(t *testing.T) {
	t.Run("FreshDatabase", func(t *testing.T) {
		m := new(MockSchemaMigrator)
		m.On("Version").Return(uint(0), false, migrate.ErrNilVersion).Once()
		m.On("Up").Return(nil).Once()
		m.On("Version").Return(uint(2), false, nil).Once()
		m.On("Close").Return(nil, nil).Once()

		require.NoError(t, applyMigrations(newTestLogger(), m))
		m.AssertExpectations(t)
	})

	t.Run("AlreadyCurrent", func(t *testing.T) {
		m := new(MockSchemaMigrator)
		m.On("Version").Return(uint(2), false, nil).Once()
		m.On("Up").Return(migrate.ErrNoChange).Once()
		m.On("Close").Return(nil, nil).Once()

		require.NoError(t, applyMigrations(newTestLogger(), m))
		m.AssertExpectations(t)
	})

	t.Run("DirtySchemaIsNotMigrated", func(t *testing.T) {
		m := new(MockSchemaMigrator)
		m.On("Version").Return(uint(2), true, nil).Once()
		m.On("Close").Return(nil, nil).Once()

		err := applyMigrations(newTestLogger(), m)
		assert.ErrorContains(t, err, "schema version 2 is dirty")
		m.AssertNotCalled(t, "Up")
		m.AssertExpectations(t)
	})

	t.Run("UpFailureWinsOverCloseError", func(t *testing.T) {
		m := new(MockSchemaMigrator)
		m.On("Version").Return(uint(1), false, nil).Once()
		m.On("Up").Return(errors.New("syntax error at line 3")).Once()
		m.On("Close").Return(nil, errors.New("connection reset")).Once()

		err := applyMigrations(newTestLogger(), m)
		assert.EqualError(t, err, "failed to apply migrations: syntax error at line 3")
		m.AssertExpectations(t)
	})

	t.Run("CloseError", func(t *testing.T) {
		m := new(MockSchemaMigrator)
		m.On("Version").Return(uint(2), false, nil).Once()
		m.On("Up").Return(migrate.ErrNoChange).Once()
		m.On("Close").Return(nil, errors.New("connection reset")).Once()

		err := applyMigrations(newTestLogger(), m)
		assert.EqualError(t, err, "migration database error: connection reset")
		m.AssertExpectations(t)
	})
}

func TestMigrationSourceURL(t *testing.T) {
	assert.Equal(t, "file://migrations/postgres", migrationSourceURL("migrations/postgres"))
	assert.Equal(t, "file:///srv/migrations", migrationSourceURL("file:///srv/migrations"))
}

func TestMigrationFiles_ArePaired(t *testing.T) {
	dir := filepath.Join("..", "..", "..", "migrations", "postgres")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}

	require.NotEmpty(t, ups)
	assert.Equal(t, ups, downs, "every up migration needs a matching down migration")
}
