// Package pool типизированная обёртка над sync.Pool для объектов с Reset.
package pool

import "sync"

// Resettable объект, который можно вернуть в исходное состояние
type Resettable interface {
	Reset()
}

type Pool[T Resettable] struct {
	inner sync.Pool
}

// New пул, создающий объекты через fn при пустом пуле
func New[T Resettable](fn func() T) *Pool[T] {
	p := &Pool[T]{}
	p.inner.New = func() any { return fn() }
	return p
}

func (p *Pool[T]) Get() T {
	return p.inner.Get().(T)
}

// Put сбрасывает объект и возвращает его в пул
func (p *Pool[T]) Put(x T) {
	x.Reset()
	p.inner.Put(x)
}

// PutAll возвращает в пул сразу несколько объектов, например результаты пакетного запроса
func (p *Pool[T]) PutAll(xs ...T) {
	for _, x := range xs {
		p.Put(x)
	}
}
