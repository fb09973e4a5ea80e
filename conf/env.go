package conf

import "fmt"

// EnvironmentEnum deployment environment
type EnvironmentEnum string

const (
	LocalEnvironmentEnum   EnvironmentEnum = "loc"
	DevEnvironmentEnum     EnvironmentEnum = "dev"
	ProdEnvironmentEnum    EnvironmentEnum = "prod"
	ExampleEnvironmentEnum EnvironmentEnum = "example"
)

// SystemEnvironmentEnum current environment, set from the -env flag
var SystemEnvironmentEnum = LocalEnvironmentEnum

// ParseEnvironment maps a flag value to an environment, falling back to loc
func ParseEnvironment(env string) EnvironmentEnum {
	switch EnvironmentEnum(env) {
	case DevEnvironmentEnum, ProdEnvironmentEnum, ExampleEnvironmentEnum:
		return EnvironmentEnum(env)
	default:
		return LocalEnvironmentEnum
	}
}

// GetYaml returns the config file path for the current environment
func GetYaml() string {
	return fmt.Sprintf("./conf/%s.yaml", SystemEnvironmentEnum)
}
