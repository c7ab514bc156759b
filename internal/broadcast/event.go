package broadcast

import (
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Event is the wire envelope delivered to every subscriber of a topic.
type Event struct {
	Name    string
	Topic   Topic
	Payload any
	At      time.Time
}

// Encode renders the envelope as a JSON frame. The payload is marshalled once
// per publish, not once per subscriber.
func (e Event) Encode() ([]byte, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal payload")
	}

	var enc jx.Encoder
	enc.Obj(func(enc *jx.Encoder) {
		enc.Field("event", func(enc *jx.Encoder) {
			enc.Str(e.Name)
		})
		enc.Field("topic", func(enc *jx.Encoder) {
			enc.Str(string(e.Topic))
		})
		enc.Field("data", func(enc *jx.Encoder) {
			enc.Raw(payload)
		})
		enc.Field("ts", func(enc *jx.Encoder) {
			enc.Str(e.At.UTC().Format(time.RFC3339Nano))
		})
	})
	return enc.Bytes(), nil
}
