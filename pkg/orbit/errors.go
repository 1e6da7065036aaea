package orbit

import "errors"

// ErrNoPivotTarget is returned when nothing is pickable at the viewport
// center, so there is no point to orbit around.
var ErrNoPivotTarget = errors.New("no ground point under the viewport center")
