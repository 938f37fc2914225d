package history

import "testing"

func TestSubject(t *testing.T) {
	s := newSubject(1)

	var a, b []int
	cancelA := s.subscribe(func(v int) { a = append(a, v) })
	s.subscribe(func(v int) { b = append(b, v) })

	s.publish(2)
	cancelA()
	s.publish(3)

	if len(a) != 2 || a[0] != 1 || a[1] != 2 {
		t.Errorf("first subscriber saw %v, want [1 2]", a)
	}
	if len(b) != 3 || b[2] != 3 {
		t.Errorf("second subscriber saw %v, want [1 2 3]", b)
	}
	if s.get() != 3 {
		t.Errorf("get() = %d, want 3", s.get())
	}
}

func TestSubject_OrderAndReentrantGet(t *testing.T) {
	s := newSubject("")

	var order []string
	s.subscribe(func(string) { order = append(order, "first") })
	s.subscribe(func(v string) {
		// Reading inside a callback must not deadlock.
		if s.get() != v {
			t.Errorf("get() inside callback = %q, want %q", s.get(), v)
		}
		order = append(order, "second")
	})
	order = nil

	s.publish("x")
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("callback order = %v", order)
	}
}
