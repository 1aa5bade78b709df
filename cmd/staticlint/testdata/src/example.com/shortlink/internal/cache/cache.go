package cache

type Cache interface {
	Get(code string) (string, bool)
	Close() error
}

type Memory struct{}

func (m *Memory) Get(string) (string, bool) { return "", false }
func (m *Memory) Close() error              { return nil }

type Options struct {
	TTL int
}
