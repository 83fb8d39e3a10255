package srcu

import (
	"github.com/llxisdsh/pb"
	"github.com/petermattis/goid"
)

// readerTracker records, per goroutine, how many read sections of one
// domain it is inside. It backs WithReentrancyCheck.
//
// Every access goes through ProcessEntry so it holds the bucket lock; a
// plain Load would race with updates made by other goroutines.
type readerTracker struct {
	depth pb.MapOf[int64, int32]
}

func (t *readerTracker) enter() {
	t.depth.ProcessEntry(
		goid.Get(),
		func(l *pb.EntryOf[int64, int32]) (*pb.EntryOf[int64, int32], int32, bool) {
			if l == nil {
				return &pb.EntryOf[int64, int32]{Value: 1}, 1, false
			}
			return &pb.EntryOf[int64, int32]{Value: l.Value + 1}, l.Value + 1, true
		},
	)
}

// exit drops one level. An exit without a matching enter on this goroutine
// (the token was handed over) is ignored.
func (t *readerTracker) exit() {
	t.depth.ProcessEntry(
		goid.Get(),
		func(l *pb.EntryOf[int64, int32]) (*pb.EntryOf[int64, int32], int32, bool) {
			if l == nil {
				return nil, 0, false
			}
			if l.Value <= 1 {
				return nil, 0, true
			}
			return &pb.EntryOf[int64, int32]{Value: l.Value - 1}, l.Value - 1, true
		},
	)
}

// held returns the read-section depth of the calling goroutine.
func (t *readerTracker) held() int32 {
	n, _ := t.depth.ProcessEntry(
		goid.Get(),
		func(l *pb.EntryOf[int64, int32]) (*pb.EntryOf[int64, int32], int32, bool) {
			if l == nil {
				return nil, 0, false
			}
			return l, l.Value, true
		},
	)
	return n
}
