package storage

import "strings"

var imageExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true, "bmp": true, "webp": true,
}

// folderFor classifies a file extension into its destination subfolder.
func folderFor(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	switch {
	case imageExtensions[ext]:
		return "images"
	case ext == "pdf":
		return "pdfs"
	default:
		return "others"
	}
}

// joinRelPath prepends folder to path using forward slashes
// unconditionally, since destinations may be remote hosts whose path
// separator is never the local OS's.
func joinRelPath(folder, path string) string {
	path = strings.Trim(path, "/")
	if path == "" {
		return folder
	}
	return folder + "/" + path
}
