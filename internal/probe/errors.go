package probe

import "errors"

// ErrPageUnavailable is returned when the page a Scraper was pointed at
// cannot be validated or fetched.
var ErrPageUnavailable = errors.New("probe: page unavailable")
