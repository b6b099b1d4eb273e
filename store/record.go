package store

func init() {
	Register(KindRecord, func() Object { return new(Record) })
}

// Record is an opaque domain object. Indexes reference records by OID and
// never own them.
type Record struct {
	Resource
	data []byte
}

// NewRecord creates a transient record holding a copy of data.
func NewRecord(data []byte) *Record {
	r := &Record{}
	r.data = append([]byte(nil), data...)
	return r
}

// Kind returns KindRecord.
func (r *Record) Kind() Kind { return KindRecord }

// Bytes returns a copy of the record payload.
func (r *Record) Bytes() []byte {
	r.RLock()
	defer r.RUnlock()
	return append([]byte(nil), r.data...)
}

// SetBytes replaces the record payload and marks the record modified.
func (r *Record) SetBytes(data []byte) {
	r.Lock()
	r.data = append(r.data[:0:0], data...)
	r.Unlock()
	r.Modify()
}

// MarshalBinary returns the payload.
func (r *Record) MarshalBinary() ([]byte, error) {
	r.RLock()
	defer r.RUnlock()
	return append([]byte(nil), r.data...), nil
}

// UnmarshalBinary replaces the payload with a copy of data.
func (r *Record) UnmarshalBinary(data []byte) error {
	r.Lock()
	defer r.Unlock()
	r.data = append([]byte(nil), data...)
	return nil
}
