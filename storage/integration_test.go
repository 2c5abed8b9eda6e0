package storage

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/candlepin/candlepin-sub033/storage/model"
)

func TestDSN(t *testing.T) {
	conf := DSNConf{User: "cp", Password: "secret", Host: "db", DB: "candlepin"}
	tests := []struct {
		driver  DriverType
		want    string
		wantErr bool
	}{
		{driver: DriverMySQL, want: "cp:secret@tcp(db:3306)/candlepin?charset=utf8mb4&parseTime=True"},
		{driver: DriverPostgres, want: "host=db user=cp password=secret dbname=candlepin port=5432"},
		{driver: DriverSQLite, wantErr: true},
		{driver: "oracle", wantErr: true},
	}
	for _, test := range tests {
		t.Run(
			string(test.driver), func(t *testing.T) {
				dsn, err := DSN(test.driver, conf)
				if test.wantErr {
					assert.Error(t, err)
					return
				}
				require.NoError(t, err)
				assert.Equal(t, test.want, dsn)
			},
		)
	}
}

// TestServerDrivers migrates the schema on the databases named by MYSQL_DSN
// and POSTGRES_DSN and writes an import record through the backends.
func TestServerDrivers(t *testing.T) {
	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("Skipping integration test. Set RUN_INTEGRATION_TESTS=true to run")
	}
	for driver, env := range map[DriverType]string{
		DriverMySQL:    "MYSQL_DSN",
		DriverPostgres: "POSTGRES_DSN",
	} {
		t.Run(
			string(driver), func(t *testing.T) {
				dsn := os.Getenv(env)
				if dsn == "" {
					t.Skipf("Set %s to run", env)
				}
				s, err := NewStorage(Config{Driver: driver, DSN: dsn})
				require.NoError(t, err)
				defer s.Close()

				db, err := s.db.DB()
				require.NoError(t, err)
				require.NoError(t, db.Ping())

				b := s.Backends()
				owner := &model.Owner{Key: "integration-" + string(driver), DisplayName: "integration"}
				require.NoError(t, b.Owners.Create(owner))
				require.NoError(
					t, b.ImportRecords.Create(
						&model.ImportRecord{OwnerID: owner.ID, Status: model.ImportStatusSuccess},
					),
				)
				records, err := b.ImportRecords.ListByOwner(owner.ID)
				require.NoError(t, err)
				assert.Len(t, records, 1)
			},
		)
	}
}
