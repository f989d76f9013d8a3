package paths

import (
	"flag"
)

// SetupFilePathFlag creates a new string flag on fs with the passed name with
// a sane default for the path to the file, if found using the Find function.
// If not, the flag defaults to an empty string.
func SetupFilePathFlag(fs *flag.FlagSet, fileName, flagName string, flagPtr *string) {
	fs.StringVar(flagPtr, flagName, Find(fileName), "Path to "+fileName)
}
