// Package decoder turns getUpdates replies into typed updates.
package decoder

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"kiran/internal/types"
)

// Policy decides what a single undecodable update does to its batch.
type Policy int

const (
	// PolicySkip logs the update and keeps the rest of the batch.
	PolicySkip Policy = iota
	// PolicyAbort rejects the whole batch.
	PolicyAbort
)

func (p Policy) String() string {
	switch p {
	case PolicySkip:
		return "skip"
	case PolicyAbort:
		return "abort"
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// ParsePolicy accepts "skip" and "abort".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "skip":
		return PolicySkip, nil
	case "abort":
		return PolicyAbort, nil
	}
	return PolicySkip, errors.Errorf("unknown decode policy %q", s)
}

var (
	ErrNotOK       = errors.New("api reported failure")
	ErrMalformed   = errors.New("malformed updates result")
	ErrBatchFailed = errors.New("update batch rejected")
)

// DecodeError describes one update that could not be decoded.
type DecodeError struct {
	Index int
	// UpdateID is zero when even the id could not be read.
	UpdateID int64
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("update #%d (id %d): %v", e.Index, e.UpdateID, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Batch is the decoded result of one getUpdates call.
type Batch struct {
	Updates []types.Update
	// MaxUpdateID covers skipped updates too, so they are confirmed with
	// the rest of the batch.
	MaxUpdateID int64
	Failures    []*DecodeError
}

// Decoder decodes update envelopes according to a Policy.
type Decoder struct {
	policy Policy
	logger log.FieldLogger
}

func New(policy Policy, logger log.FieldLogger) *Decoder {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Decoder{policy: policy, logger: logger}
}

func (d *Decoder) Policy() Policy { return d.policy }

// Decode maps a getUpdates envelope to a Batch.
func (d *Decoder) Decode(resp *types.APIResponse) (*Batch, error) {
	if resp == nil {
		return nil, ErrMalformed
	}
	if !resp.OK {
		return nil, errors.Wrapf(ErrNotOK, "%d %s", resp.ErrorCode, resp.Description)
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(resp.Result, &raws); err != nil {
		return nil, errors.Wrap(ErrMalformed, err.Error())
	}

	batch := &Batch{Updates: make([]types.Update, 0, len(raws))}
	for i, raw := range raws {
		u, err := decodeOne(raw)
		if u.UpdateID > batch.MaxUpdateID {
			batch.MaxUpdateID = u.UpdateID
		}
		if err != nil {
			decodeErr := &DecodeError{Index: i, UpdateID: u.UpdateID, Err: err}
			if d.policy == PolicyAbort {
				return nil, errors.Wrap(ErrBatchFailed, decodeErr.Error())
			}
			d.logger.WithFields(log.Fields{
				"update_id": u.UpdateID,
				"index":     i,
			}).WithError(err).Warn("skipping undecodable update")
			batch.Failures = append(batch.Failures, decodeErr)
			continue
		}

		if debugEnabled(d.logger) {
			d.logger.Debugf("decoded update:\n%s", spew.Sdump(u))
		}
		batch.Updates = append(batch.Updates, u)
	}
	return batch, nil
}

// decodeOne reads update_id first so a broken payload still yields its id.
func decodeOne(raw json.RawMessage) (types.Update, error) {
	var probe struct {
		UpdateID *int64 `json:"update_id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return types.Update{}, errors.Wrap(err, "read update_id")
	}
	if probe.UpdateID == nil {
		return types.Update{}, errors.New("update_id missing")
	}

	var u types.Update
	if err := json.Unmarshal(raw, &u); err != nil {
		return types.Update{UpdateID: *probe.UpdateID}, errors.Wrap(err, "decode update")
	}
	return u, nil
}

func debugEnabled(l log.FieldLogger) bool {
	switch v := l.(type) {
	case *log.Logger:
		return v.IsLevelEnabled(log.DebugLevel)
	case *log.Entry:
		return v.Logger.IsLevelEnabled(log.DebugLevel)
	}
	return false
}
