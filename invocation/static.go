package invocation

import (
	"fmt"
	"os"
	"strconv"
)

// Environment variables the platform sets before the process starts.
const (
	EnvFunctionName    = "AWS_LAMBDA_FUNCTION_NAME"
	EnvFunctionVersion = "AWS_LAMBDA_FUNCTION_VERSION"
	EnvMemoryLimit     = "AWS_LAMBDA_FUNCTION_MEMORY_SIZE"
	EnvLogGroupName    = "AWS_LAMBDA_LOG_GROUP_NAME"
	EnvLogStreamName   = "AWS_LAMBDA_LOG_STREAM_NAME"
)

// StaticContext is the part of the execution context fixed for the
// process lifetime, read once from the environment at cold start.
type StaticContext struct {
	FunctionName    string
	FunctionVersion string
	MemoryLimitInMB int
	LogGroupName    string
	LogStreamName   string
}

// StaticFromEnv loads the static context. Every field is required; a
// missing or malformed value means the environment is unusable and the
// process must report an initialization error and exit.
func StaticFromEnv() (*StaticContext, error) {
	name, err := requiredEnv(EnvFunctionName)
	if err != nil {
		return nil, err
	}
	version, err := requiredEnv(EnvFunctionVersion)
	if err != nil {
		return nil, err
	}
	memory, err := requiredEnv(EnvMemoryLimit)
	if err != nil {
		return nil, err
	}
	memoryMB, err := strconv.Atoi(memory)
	if err != nil {
		return nil, fmt.Errorf("invocation: %s: invalid memory limit %q", EnvMemoryLimit, memory)
	}
	logGroup, err := requiredEnv(EnvLogGroupName)
	if err != nil {
		return nil, err
	}
	logStream, err := requiredEnv(EnvLogStreamName)
	if err != nil {
		return nil, err
	}

	return &StaticContext{
		FunctionName:    name,
		FunctionVersion: version,
		MemoryLimitInMB: memoryMB,
		LogGroupName:    logGroup,
		LogStreamName:   logStream,
	}, nil
}

func requiredEnv(key string) (string, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", fmt.Errorf("invocation: environment variable %s not set", key)
	}
	return v, nil
}
