package config

// ConfigBackend abstracts where non-secret settings are persisted. The
// default is a JSON file under $XDG_CONFIG_HOME; tests use an in-memory map.
type ConfigBackend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	Delete(key string) error
}

// secretStore reads and writes credentials kept outside the config file.
type secretStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
}
