package models

import (
	"encoding/binary"
	"fmt"
)

// TaskStatus is the task lifecycle state, stored on the wire as one byte.
// Transitions only ever advance: Open -> Assigned -> Completed -> Paid.
type TaskStatus uint8

const (
	TaskOpen TaskStatus = iota
	TaskAssigned
	TaskCompleted
	TaskPaid
)

// Valid reports whether the byte value is a member of the closed status set.
// Anything else is rejected at deserialization rather than carried along.
func (s TaskStatus) Valid() bool {
	return s <= TaskPaid
}

func (s TaskStatus) String() string {
	switch s {
	case TaskOpen:
		return "open"
	case TaskAssigned:
		return "assigned"
	case TaskCompleted:
		return "completed"
	case TaskPaid:
		return "paid"
	}
	return fmt.Sprintf("unknown(%d)", uint8(s))
}

// MarshalJSON encodes the status as its lowercase name.
func (s TaskStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// TaskRecordLen is the fixed size of a serialized Task record:
// team(32) | task_id(8) | creator(32) | assignee(32) | reward(8) | status(1).
const TaskRecordLen = AddressLen + 8 + AddressLen + AddressLen + 8 + 1

// Task is the per-task record. Assignee is the zero address until the task
// is assigned, exactly once. Reward is fixed at creation.
type Task struct {
	Team     Address    `json:"team"`
	TaskID   uint64     `json:"task_id"`
	Creator  Address    `json:"creator"`
	Assignee Address    `json:"assignee"`
	Reward   uint64     `json:"reward"`
	Status   TaskStatus `json:"status"`
}

// Encode serializes the task record into its fixed storage layout.
func (t Task) Encode() []byte {
	buf := make([]byte, TaskRecordLen)
	off := 0
	copy(buf[off:], t.Team[:])
	off += AddressLen
	binary.LittleEndian.PutUint64(buf[off:], t.TaskID)
	off += 8
	copy(buf[off:], t.Creator[:])
	off += AddressLen
	copy(buf[off:], t.Assignee[:])
	off += AddressLen
	binary.LittleEndian.PutUint64(buf[off:], t.Reward)
	off += 8
	buf[off] = byte(t.Status)
	return buf
}

// DecodeTask deserializes a task record, rejecting unknown status bytes.
func DecodeTask(data []byte) (Task, error) {
	var t Task
	if len(data) != TaskRecordLen {
		return t, fmt.Errorf("task record: want %d bytes, got %d", TaskRecordLen, len(data))
	}
	off := 0
	copy(t.Team[:], data[off:off+AddressLen])
	off += AddressLen
	t.TaskID = binary.LittleEndian.Uint64(data[off : off+8])
	off += 8
	copy(t.Creator[:], data[off:off+AddressLen])
	off += AddressLen
	copy(t.Assignee[:], data[off:off+AddressLen])
	off += AddressLen
	t.Reward = binary.LittleEndian.Uint64(data[off : off+8])
	off += 8
	t.Status = TaskStatus(data[off])
	if !t.Status.Valid() {
		return Task{}, fmt.Errorf("task record: unknown status byte %d", data[off])
	}
	return t, nil
}
