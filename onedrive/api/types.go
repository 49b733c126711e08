// Package api provides types used by the Microsoft Graph drive API
//
// See https://docs.microsoft.com/en-us/onedrive/developer/rest-api/
package api

import (
	"time"
)

const (
	timeFormat         = `"2006-01-02T15:04:05Z"`
	timeFormatFraction = `"2006-01-02T15:04:05.999999999Z"`
)

// Timestamp is a time.Time which marshals as the naive UTC datetimes
// the Graph API uses.  Items come back with and without fractional
// seconds so both forms are accepted.
type Timestamp time.Time

// MarshalJSON turns a Timestamp into JSON (in UTC)
//
// The value receiver matters: items are marshalled as values, and a
// pointer receiver would leave the default struct encoding in charge.
func (t Timestamp) MarshalJSON() (out []byte, err error) {
	timeString := time.Time(t).UTC().Format(timeFormat)
	return []byte(timeString), nil
}

// UnmarshalJSON turns JSON into a Timestamp
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	newT, err := time.Parse(timeFormat, string(data))
	if err != nil {
		newT, err = time.Parse(timeFormatFraction, string(data))
		if err != nil {
			return err
		}
	}
	*t = Timestamp(newT)
	return nil
}

// Error is returned from the Graph API when things go wrong
//
// https://docs.microsoft.com/en-us/onedrive/developer/rest-api/concepts/errors
type Error struct {
	ErrorInfo struct {
		Code       string `json:"code"`
		Message    string `json:"message"`
		InnerError struct {
			Code string `json:"code"`
		} `json:"innererror"`
	} `json:"error"`
}

// Error returns a string for the error and satisfies the error interface
func (e *Error) Error() string {
	out := e.ErrorInfo.Code
	if e.ErrorInfo.InnerError.Code != "" {
		out += ": " + e.ErrorInfo.InnerError.Code
	}
	out += ": " + e.ErrorInfo.Message
	return out
}

// Identity represents an identity of an actor
type Identity struct {
	DisplayName string `json:"displayName,omitempty"`
	ID          string `json:"id,omitempty"`
}

// IdentitySet is a keyed collection of Identity objects
type IdentitySet struct {
	User        Identity `json:"user,omitempty"`
	Application Identity `json:"application,omitempty"`
	Device      Identity `json:"device,omitempty"`
}

// ItemReference groups data needed to reference a DriveItem across
// drives
type ItemReference struct {
	DriveID   string `json:"driveId,omitempty"`
	DriveType string `json:"driveType,omitempty"`
	ID        string `json:"id,omitempty"`
	Path      string `json:"path,omitempty"`
}

// FolderFacet groups folder-related data on OneDrive into a single structure
type FolderFacet struct {
	ChildCount int64 `json:"childCount"`
}

// HashesType groups different types of hashes into a single structure
type HashesType struct {
	Sha1Hash     string `json:"sha1Hash,omitempty"`
	Crc32Hash    string `json:"crc32Hash,omitempty"`
	QuickXorHash string `json:"quickXorHash,omitempty"`
}

// FileFacet groups file-related data on OneDrive into a single structure
type FileFacet struct {
	MimeType string     `json:"mimeType,omitempty"`
	Hashes   HashesType `json:"hashes,omitempty"`
}

// FileSystemInfoFacet contains properties that are reported by the
// device's local file system for the local version of an item
//
// The timestamps are pointers so a PATCH can carry just one of them
// without resetting the other to the zero time.
type FileSystemInfoFacet struct {
	CreatedDateTime      *Timestamp `json:"createdDateTime,omitempty"`
	LastModifiedDateTime *Timestamp `json:"lastModifiedDateTime,omitempty"`
}

// DeletedFacet indicates that the item on OneDrive has been deleted
type DeletedFacet struct {
	State string `json:"state,omitempty"`
}

// PackageFacet indicates that a DriveItem is the top level item in a
// "package" such as a OneNote notebook
type PackageFacet struct {
	Type string `json:"type,omitempty"`
}

// PhotoFacet groups photo-related data, for example EXIF metadata
type PhotoFacet struct {
	TakenDateTime       *Timestamp `json:"takenDateTime,omitempty"`
	CameraMake          string     `json:"cameraMake,omitempty"`
	CameraModel         string     `json:"cameraModel,omitempty"`
	FNumber             float64    `json:"fNumber,omitempty"`
	ExposureDenominator float64    `json:"exposureDenominator,omitempty"`
	ExposureNumerator   float64    `json:"exposureNumerator,omitempty"`
	FocalLength         float64    `json:"focalLength,omitempty"`
	ISO                 int64      `json:"iso,omitempty"`
}

// ImageFacet groups image-related data, such as dimensions
type ImageFacet struct {
	Width  int64 `json:"width,omitempty"`
	Height int64 `json:"height,omitempty"`
}

// LocationFacet groups geographic location data
type LocationFacet struct {
	Altitude  float64 `json:"altitude,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
}

// Item represents metadata for an item in OneDrive
type Item struct {
	ID                   string               `json:"id"`
	Name                 string               `json:"name"`
	ETag                 string               `json:"eTag,omitempty"`
	Size                 int64                `json:"size"`
	WebURL               string               `json:"webUrl,omitempty"`
	CreatedBy            IdentitySet          `json:"createdBy,omitempty"`
	CreatedDateTime      Timestamp            `json:"createdDateTime"`
	LastModifiedDateTime Timestamp            `json:"lastModifiedDateTime"`
	ParentReference      *ItemReference       `json:"parentReference,omitempty"`
	Folder               *FolderFacet         `json:"folder,omitempty"`
	File                 *FileFacet           `json:"file,omitempty"`
	FileSystemInfo       *FileSystemInfoFacet `json:"fileSystemInfo,omitempty"`
	Deleted              *DeletedFacet        `json:"deleted,omitempty"`
	Package              *PackageFacet        `json:"package,omitempty"`
	Photo                *PhotoFacet          `json:"photo,omitempty"`
	Image                *ImageFacet          `json:"image,omitempty"`
	Location             *LocationFacet       `json:"location,omitempty"`
}

// IsFolder reports whether the item is a folder (or a package, which
// behaves like one)
func (i *Item) IsFolder() bool {
	return i.Folder != nil || i.Package != nil
}

// ListChildrenResponse is the response to the list children method
type ListChildrenResponse struct {
	Value    []Item `json:"value"`
	NextLink string `json:"@odata.nextLink,omitempty"`
}

// CreateItemRequest is the request to create an item
type CreateItemRequest struct {
	Name             string      `json:"name"`
	Folder           FolderFacet `json:"folder"`
	ConflictBehavior string      `json:"@microsoft.graph.conflictBehavior,omitempty"`
}

// MoveItemRequest is the request to move an item, i.e. changing its
// name or parent
type MoveItemRequest struct {
	Name            string         `json:"name,omitempty"`
	ParentReference *ItemReference `json:"parentReference,omitempty"`
}

// CopyItemRequest is the request to copy an item
//
// Name is a pointer as it is an optional field
type CopyItemRequest struct {
	ParentReference ItemReference `json:"parentReference"`
	Name            *string       `json:"name,omitempty"`
}

// SetFileSystemInfo is used to Update an object's FileSystemInfo
type SetFileSystemInfo struct {
	FileSystemInfo FileSystemInfoFacet `json:"fileSystemInfo"`
}

// CreateUploadRequest is the request to create an upload session
type CreateUploadRequest struct {
	Item struct {
		ConflictBehavior string `json:"@microsoft.graph.conflictBehavior,omitempty"`
	} `json:"item"`
}

// CreateUploadResponse is the response to creating an upload session
type CreateUploadResponse struct {
	UploadURL          string    `json:"uploadUrl"`
	ExpirationDateTime Timestamp `json:"expirationDateTime"`
	NextExpectedRanges []string  `json:"nextExpectedRanges,omitempty"`
}

// UploadFragmentResponse is the response to uploading a fragment
type UploadFragmentResponse struct {
	ExpirationDateTime Timestamp `json:"expirationDateTime"`
	NextExpectedRanges []string  `json:"nextExpectedRanges,omitempty"`
}

// AsyncOperationStatus reports the progress of a long-running
// operation, read from the monitor URL
//
// https://docs.microsoft.com/en-us/onedrive/developer/rest-api/concepts/long-running-actions
type AsyncOperationStatus struct {
	Operation          string  `json:"operation,omitempty"`
	PercentageComplete float64 `json:"percentageComplete,omitempty"`
	Status             string  `json:"status"`
}

// Drive is a representation of a drive resource
type Drive struct {
	ID        string      `json:"id"`
	DriveType string      `json:"driveType,omitempty"`
	Owner     IdentitySet `json:"owner,omitempty"`
}

// Subscription is a change notification subscription
//
// https://docs.microsoft.com/en-us/graph/api/resources/subscription
type Subscription struct {
	ID                 string    `json:"id,omitempty"`
	ChangeType         string    `json:"changeType"`
	NotificationURL    string    `json:"notificationUrl"`
	Resource           string    `json:"resource"`
	ExpirationDateTime Timestamp `json:"expirationDateTime"`
	ClientState        string    `json:"clientState,omitempty"`
}

// UpdateSubscriptionRequest changes the expiry of a subscription
type UpdateSubscriptionRequest struct {
	ExpirationDateTime Timestamp `json:"expirationDateTime"`
}

var _ error = (*Error)(nil)
