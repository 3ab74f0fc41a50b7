package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// GrayscaleSuffix marks grayscale downloads in generated filenames
const GrayscaleSuffix = "_bw"

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

// GetFileExtension returns the file extension without the dot
func GetFileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 0 {
		return strings.ToLower(ext[1:])
	}
	return ""
}

// IsImageFile checks if a file has a decodable image extension
func IsImageFile(filename string) bool {
	switch GetFileExtension(filename) {
	case "jpg", "jpeg", "png", "gif", "bmp", "tif", "tiff", "webp":
		return true
	}
	return false
}

// GenerateFilename expands a download filename template. Supported
// placeholders are {preset}, {grayscale_suffix} and {extension}; ext may be
// given with or without the leading dot.
func GenerateFilename(template, preset string, grayscale bool, ext string) string {
	if template == "" {
		template = "headshot_{preset}{grayscale_suffix}{extension}"
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	suffix := ""
	if grayscale {
		suffix = GrayscaleSuffix
	}
	if preset == "" {
		preset = "custom"
	}

	r := strings.NewReplacer(
		"{preset}", strings.ToLower(preset),
		"{grayscale_suffix}", suffix,
		"{extension}", ext,
	)
	return SanitizeFilename(r.Replace(template))
}

// FileExists checks if a file exists and is not a directory
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// SanitizeFilename removes or replaces invalid characters in filenames
func SanitizeFilename(filename string) string {
	// Replace invalid characters with underscores
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|", " "}
	result := filename

	for _, char := range invalid {
		result = strings.ReplaceAll(result, char, "_")
	}

	// Remove leading/trailing dots
	result = strings.Trim(result, ".")

	return result
}

// FormatFileSize formats file size in human-readable format
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
