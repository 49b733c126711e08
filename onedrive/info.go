package onedrive

import (
	"time"

	"github.com/rkhwaja/fs.onedrivefs/fs"
	"github.com/rkhwaja/fs.onedrivefs/onedrive/api"
)

// itemInfo translates a Graph drive item into a namespaced info
// record.
//
// The "basic" and "details" namespaces are always filled in.
// "file_system_info" carries the client-reported timestamps, and the
// optional "photo", "image", "location" and "hashes" namespaces are
// added when the item has those facets.
func itemInfo(item *api.Item) *fs.Info {
	resourceType := fs.TypeFile
	if item.IsFolder() {
		resourceType = fs.TypeDirectory
	}
	raw := map[string]map[string]interface{}{
		"basic": {
			"name":   item.Name,
			"is_dir": item.IsFolder(),
		},
		"details": {
			// accessed and metadata_changed are not supported by OneDrive
			"created":  time.Time(item.CreatedDateTime),
			"modified": time.Time(item.LastModifiedDateTime),
			"size":     item.Size,
			"type":     resourceType,
		},
	}
	if item.FileSystemInfo != nil {
		fsi := map[string]interface{}{}
		if item.FileSystemInfo.CreatedDateTime != nil {
			fsi["client_created"] = time.Time(*item.FileSystemInfo.CreatedDateTime)
		}
		if item.FileSystemInfo.LastModifiedDateTime != nil {
			fsi["client_modified"] = time.Time(*item.FileSystemInfo.LastModifiedDateTime)
		}
		raw["file_system_info"] = fsi
	}
	if item.Photo != nil {
		photo := map[string]interface{}{}
		if item.Photo.CameraMake != "" {
			photo["camera_make"] = item.Photo.CameraMake
		}
		if item.Photo.CameraModel != "" {
			photo["camera_model"] = item.Photo.CameraModel
		}
		if item.Photo.ExposureDenominator != 0 {
			photo["exposure_denominator"] = item.Photo.ExposureDenominator
		}
		if item.Photo.ExposureNumerator != 0 {
			photo["exposure_numerator"] = item.Photo.ExposureNumerator
		}
		if item.Photo.FocalLength != 0 {
			photo["focal_length"] = item.Photo.FocalLength
		}
		if item.Photo.FNumber != 0 {
			photo["f_number"] = item.Photo.FNumber
		}
		if item.Photo.TakenDateTime != nil {
			photo["taken_date_time"] = time.Time(*item.Photo.TakenDateTime)
		}
		if item.Photo.ISO != 0 {
			photo["iso"] = item.Photo.ISO
		}
		raw["photo"] = photo
	}
	if item.Image != nil {
		raw["image"] = map[string]interface{}{
			"width":  item.Image.Width,
			"height": item.Image.Height,
		}
	}
	if item.Location != nil {
		raw["location"] = map[string]interface{}{
			"altitude":  item.Location.Altitude,
			"latitude":  item.Location.Latitude,
			"longitude": item.Location.Longitude,
		}
	}
	if item.File != nil {
		hashes := map[string]interface{}{}
		// CRC32 appears in the hashes spec but not always in the
		// implementation
		if item.File.Hashes.Crc32Hash != "" {
			hashes["CRC32"] = item.File.Hashes.Crc32Hash
		}
		if item.File.Hashes.Sha1Hash != "" {
			hashes["SHA1"] = item.File.Hashes.Sha1Hash
		}
		if item.File.Hashes.QuickXorHash != "" {
			hashes["quickXorHash"] = item.File.Hashes.QuickXorHash
		}
		if len(hashes) > 0 {
			raw["hashes"] = hashes
		}
	}
	return fs.NewInfo(raw)
}
