// Package loader registers every token store driver.
package loader

import (
	_ "github.com/staybook/frontdesk/internal/components/tokenstore/json"
	_ "github.com/staybook/frontdesk/internal/components/tokenstore/memory"
	_ "github.com/staybook/frontdesk/internal/components/tokenstore/redis"
	_ "github.com/staybook/frontdesk/internal/components/tokenstore/sqlite"
)
