package media

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/soundvault/backend/internal/errs"
)

// DeliveryPlan is the byte window a response will carry. End is inclusive.
type DeliveryPlan struct {
	Status int
	Start  int64
	End    int64
	Length int64
	Total  int64
}

func (p DeliveryPlan) Partial() bool {
	return p.Status == http.StatusPartialContent
}

// ContentRange is the Content-Range header value for a partial plan.
func (p DeliveryPlan) ContentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", p.Start, p.End, p.Total)
}

// UnsatisfiedRange is the Content-Range header value sent with a 416.
func UnsatisfiedRange(total int64) string {
	return fmt.Sprintf("bytes */%d", total)
}

// Only the single "bytes=start-[end]" form is supported. Suffix ranges
// (bytes=-500) and multi-range requests are rejected as malformed.
var rangeHeader = regexp.MustCompile(`^bytes=(\d+)-(\d*)$`)

// Negotiate turns an optional Range header and the resource size into a
// plan. An empty header selects the whole resource.
func Negotiate(header string, total int64) (DeliveryPlan, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return DeliveryPlan{Status: http.StatusOK, Start: 0, End: total - 1, Length: total, Total: total}, nil
	}

	m := rangeHeader.FindStringSubmatch(header)
	if m == nil {
		return DeliveryPlan{}, fmt.Errorf("malformed range %q: %w", header, errs.ErrInvalidInput)
	}
	start, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return DeliveryPlan{}, fmt.Errorf("range start %q: %w", m[1], errs.ErrInvalidInput)
	}
	if total <= 0 || start >= total {
		return DeliveryPlan{}, fmt.Errorf("start %d of %d bytes: %w", start, total, errs.ErrRangeNotSatisfiable)
	}

	end := total - 1
	if m[2] != "" {
		end, err = strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			return DeliveryPlan{}, fmt.Errorf("range end %q: %w", m[2], errs.ErrInvalidInput)
		}
		if end < start {
			return DeliveryPlan{}, fmt.Errorf("end %d before start %d: %w", end, start, errs.ErrRangeNotSatisfiable)
		}
		if end > total-1 {
			end = total - 1
		}
	}

	return DeliveryPlan{
		Status: http.StatusPartialContent,
		Start:  start,
		End:    end,
		Length: end - start + 1,
		Total:  total,
	}, nil
}
