// Package all registers every desk implementation with the central registry.
// Import it for side effects:
//
//	import _ "github.com/upliftdesk/godesk/pkg/desks/all"
package all

import (
	_ "github.com/upliftdesk/godesk/pkg/desks/mock"
	_ "github.com/upliftdesk/godesk/pkg/desks/uplift"
)
