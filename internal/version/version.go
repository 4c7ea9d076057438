// Package version хранит информацию о сборке orders service.
package version

import "fmt"

// Значения подставляются при сборке бинаря:
//
//	go build -ldflags "-X .../internal/version.version=v1.4.0 \
//	  -X .../internal/version.commit=$(git rev-parse --short HEAD) \
//	  -X .../internal/version.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// BuildInfo описывает собранный бинарь сервиса.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// Get возвращает информацию о текущей сборке.
func Get() BuildInfo {
	return BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	}
}

// String возвращает однострочное представление для логов,
// флага -version и healthcheck-ответа.
func String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", version, commit, date)
}
