package healthmon

import "github.com/rs/zerolog"

func discardLogger() zerolog.Logger {
	return zerolog.Nop()
}
