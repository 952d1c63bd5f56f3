package primitives

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// DurationUnmarshal decodes a duration expressed in seconds.
func DurationUnmarshal(val string) (time.Duration, error) {
	tmp, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, err
	}

	if tmp < 0 {
		return 0, fmt.Errorf("negative duration: %s", val)
	}

	return time.Duration(math.Round(tmp * float64(time.Second))), nil
}

// DurationMarshal encodes a duration in seconds, with millisecond precision.
func DurationMarshal(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
