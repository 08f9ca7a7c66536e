/*-------------------------------------------------------------------------
 *
 * Land Use Analytics Agent
 *
 * Copyright (c) 2025, the Land Use Analytics Agent authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package tools

import (
	"fmt"
)

// ValidateStringParam validates and extracts a required string parameter from args
// Returns the string value and a Response error if validation fails
func ValidateStringParam(args map[string]interface{}, name string) (string, *Response) {
	value, ok := args[name].(string)
	if !ok || value == "" {
		resp := NewError(fmt.Sprintf("Missing or invalid '%s' argument", name))
		return "", &resp
	}
	return value, nil
}

// ValidateOptionalStringParam validates and extracts an optional string parameter
// Returns the string value (or defaultValue if not present)
func ValidateOptionalStringParam(args map[string]interface{}, name string, defaultValue string) string {
	value, ok := args[name].(string)
	if !ok {
		return defaultValue
	}
	return value
}

// ValidateOptionalNumberParam validates and extracts an optional number parameter
// Returns the float64 value (or defaultValue if not present)
func ValidateOptionalNumberParam(args map[string]interface{}, name string, defaultValue float64) float64 {
	value, ok := args[name].(float64)
	if !ok {
		return defaultValue
	}
	return value
}
