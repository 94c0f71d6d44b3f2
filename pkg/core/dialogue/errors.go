package dialogue

import "errors"

var errNoProvider = errors.New("no reply generator configured")
