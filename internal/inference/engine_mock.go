package inference

import (
	"time"
)

// mockEngine - движок для тестов: выход - one-hot по цифре, закодированной в первом пикселе
type mockEngine struct {
	shape    []int64
	bound    []float32
	out      []float32
	delay    time.Duration
	bindFn   func(in []float32) error
	invokeFn func(in []float32) ([]float32, error)
	invokes  int
	closed   bool
}

func newMockEngine() *mockEngine {
	return &mockEngine{shape: []int64{1, 28, 28, 1}}
}

func (m *mockEngine) InputShape() []int64 {
	return m.shape
}

func (m *mockEngine) Bind(in []float32) error {
	if m.bindFn != nil {
		if err := m.bindFn(in); err != nil {
			return err
		}
	}
	m.bound = append(m.bound[:0], in...)
	return nil
}

func (m *mockEngine) Invoke() error {
	m.invokes++
	if m.invokeFn != nil {
		out, err := m.invokeFn(m.bound)
		m.out = out
		return err
	}

	first := m.bound[0]
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	// если кто-то перепривязал вход во время инференса - это будет видно по результату
	if m.bound[0] != first {
		m.out = make([]float32, 10)
		return nil
	}
	m.out = oneHot(digitFromPixel(first))
	return nil
}

func (m *mockEngine) Output() []float32 {
	return m.out
}

func (m *mockEngine) Close() error {
	m.closed = true
	return nil
}

func digitFromPixel(v float32) int {
	return int(v*9 + 0.5)
}

func oneHot(digit int) []float32 {
	out := make([]float32, 10)
	for i := range out {
		out[i] = 0.01
	}
	out[digit] = 0.91
	return out
}
