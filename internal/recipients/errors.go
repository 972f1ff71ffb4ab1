package recipients

import "errors"

// ErrUnknownSource — источник выборки не поддерживается resolver'ом.
var ErrUnknownSource = errors.New("unknown recipient source")
