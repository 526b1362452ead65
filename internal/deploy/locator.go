package deploy

// Locator addresses an object in the object store.
type Locator struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// FileOverride replaces the default object key of the uploaded bundle.
type FileOverride struct {
	Prefix string `json:"prefix,omitempty"`
	Name   string `json:"name,omitempty"`
}

// BundleFileName is the local and default remote name of the bundle for a
// version label.
func BundleFileName(label string) string {
	return "bundle-" + label + ".zip"
}

// ObjectKey computes the object key for label. Without an override it is the
// bundle file name; with one it is "{prefix}/{name}", where a missing prefix
// is dropped and a missing name falls back to the bundle file name.
func ObjectKey(label string, file *FileOverride) string {
	if file == nil {
		return BundleFileName(label)
	}

	key := ""
	if file.Prefix != "" {
		key = file.Prefix + "/"
	}
	if file.Name != "" {
		return key + file.Name
	}
	return key + BundleFileName(label)
}

// ResolveLocator returns where the bundle for label is stored in bucket.
func ResolveLocator(bucket, label string, file *FileOverride) Locator {
	return Locator{Bucket: bucket, Key: ObjectKey(label, file)}
}
