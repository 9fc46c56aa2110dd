package services

import "os"

func StrPointer(str string) *string {
	if str == "" {
		return nil
	}
	return &str
}

func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func GetEnv(key, fallback string) string {
	value := os.Getenv(key)
	if len(value) == 0 {
		return fallback
	}
	return value
}
