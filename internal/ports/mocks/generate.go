//go:generate mockgen -source=../watch_history.go -destination=./mock_watch_history.go -package=mocks
//go:generate mockgen -source=../seen_cache.go    -destination=./mock_seen_cache.go    -package=mocks
//go:generate mockgen -source=../validator.go     -destination=./mock_validator.go     -package=mocks

package mocks
