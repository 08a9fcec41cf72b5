package config

// Default configuration values.
const (
	DefaultPrintLevel   = 1
	DefaultPrintStep    = 1
	DefaultNamelist     = "namelist.def"
	DefaultPathToInput  = ""
	DefaultPathToOutput = "output"
	DefaultEnergyFile   = "energy.dat"
	DefaultGreenFile    = "green.dat"
	DefaultFlagFock     = true
)

// EnvPrefix marks environment variables read by Load.
// HWAVE_FILE__OUTPUT__PATH_TO_OUTPUT maps to file.output.path_to_output.
const EnvPrefix = "HWAVE_"

// Defaults returns the default layer as dotted keys.
func Defaults() map[string]any {
	return map[string]any{
		"log.print_level":            DefaultPrintLevel,
		"log.print_step":             DefaultPrintStep,
		"mode.flag_fock":             DefaultFlagFock,
		"file.input.path_to_input":   DefaultPathToInput,
		"file.input.namelist":        DefaultNamelist,
		"file.output.path_to_output": DefaultPathToOutput,
		"file.output.energy":         DefaultEnergyFile,
		"file.output.eigen":          "",
		"file.output.green":          DefaultGreenFile,
		"file.output.history_db":     "",
	}
}
