package workqueue

// ConcurrencyStrategy decides how many tasks of each class may run at once.
// The queue calls both methods under its own lock, so implementations need
// no synchronization of their own. TryAcquire reserves a slot when it
// returns true; Release returns it.
type ConcurrencyStrategy interface {
	TryAcquire(class TaskClass) bool
	Release(class TaskClass)
}

// SerializedStrategy runs at most one io task and one compute task at a
// time. The two classes still overlap, so an export can render while the
// next run reads its sources.
type SerializedStrategy struct {
	ioBusy      bool
	computeBusy bool
}

// NewSerializedStrategy creates the strategy the queue defaults to.
func NewSerializedStrategy() *SerializedStrategy {
	return &SerializedStrategy{}
}

func (s *SerializedStrategy) TryAcquire(class TaskClass) bool {
	if class == TaskClassIO {
		if s.ioBusy {
			return false
		}
		s.ioBusy = true
		return true
	}
	if s.computeBusy {
		return false
	}
	s.computeBusy = true
	return true
}

func (s *SerializedStrategy) Release(class TaskClass) {
	if class == TaskClassIO {
		s.ioBusy = false
		return
	}
	s.computeBusy = false
}

// ThrottledIOStrategy runs up to maxIO io tasks in parallel while keeping
// compute tasks serialized.
type ThrottledIOStrategy struct {
	maxIO       int
	ioRunning   int
	computeBusy bool
}

// NewThrottledIOStrategy creates a strategy allowing maxConcurrent parallel
// io tasks. Values below one are raised to one.
func NewThrottledIOStrategy(maxConcurrent int) *ThrottledIOStrategy {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &ThrottledIOStrategy{maxIO: maxConcurrent}
}

func (s *ThrottledIOStrategy) TryAcquire(class TaskClass) bool {
	if class == TaskClassIO {
		if s.ioRunning >= s.maxIO {
			return false
		}
		s.ioRunning++
		return true
	}
	if s.computeBusy {
		return false
	}
	s.computeBusy = true
	return true
}

func (s *ThrottledIOStrategy) Release(class TaskClass) {
	if class == TaskClassIO {
		if s.ioRunning > 0 {
			s.ioRunning--
		}
		return
	}
	s.computeBusy = false
}
