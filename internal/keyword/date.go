package keyword

import (
	"time"

	"github.com/ncruces/go-strftime"
)

// FormatDate expands strftime tokens such as %d %m %y %Y %A %B %H %M %S and
// %% in layout.
func FormatDate(t time.Time, layout string) string {
	return strftime.Format(layout, t)
}
