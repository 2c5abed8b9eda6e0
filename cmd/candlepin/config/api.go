package config

import "github.com/candlepin/candlepin-sub033/storage"

// apiConf holds API-related configuration
type apiConf struct {
	Admin adminAPIConf `yaml:"admin"`
}

type adminAPIConf struct {
	UsersEnabled   bool                   `yaml:"users_enabled" split_words:"true"`
	Argon2idParams storage.Argon2idParams `yaml:"password_hashing" envconfig:"PASSWORD_HASHING"`
}

var defaultAPIConf = apiConf{
	Admin: adminAPIConf{
		UsersEnabled: true,
		Argon2idParams: storage.Argon2idParams{
			Time:        1,
			MemoryKiB:   64 * 1024,
			Parallelism: 4,
			KeyLen:      64,
			SaltLen:     32,
		},
	},
}
