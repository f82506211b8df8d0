package store

import (
	"sync"
)

// Locker 按实体加锁，同一实体的所有记录修改串行执行，不同实体互不阻塞
type Locker struct {
	mu    sync.Mutex
	locks map[string]*entityLock
}

type entityLock struct {
	mu   sync.Mutex
	refs int
}

// NewLocker 创建实体锁
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*entityLock)}
}

// Lock 锁定实体，返回解锁函数
func (l *Locker) Lock(id string) (unlock func()) {
	l.mu.Lock()
	el, ok := l.locks[id]
	if !ok {
		el = &entityLock{}
		l.locks[id] = el
	}
	el.refs++
	l.mu.Unlock()

	el.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			el.mu.Unlock()

			l.mu.Lock()
			el.refs--
			if el.refs == 0 {
				delete(l.locks, id)
			}
			l.mu.Unlock()
		})
	}
}

// Len 当前持有或等待中的实体数
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
