package onedrive

import (
	"context"
	"time"

	"github.com/rkhwaja/fs.onedrivefs/onedrive/api"
	"github.com/rkhwaja/fs.onedrivefs/rest"
)

// CreateSubscription registers a webhook for change notifications on
// the drive root and returns the subscription ID.
//
// clientState is echoed back in each notification so the receiver can
// check it came from this subscription.
func (f *Fs) CreateSubscription(ctx context.Context, notificationURL string, expiration time.Time, clientState string) (string, error) {
	request := api.Subscription{
		ChangeType:         "updated",
		NotificationURL:    notificationURL,
		Resource:           f.driveRoot + "/root",
		ExpirationDateTime: api.Timestamp(expiration),
		ClientState:        clientState,
	}
	opts := rest.Opts{
		Method: "POST",
		Path:   "/subscriptions",
	}
	var created api.Subscription
	resp, err := f.srv.CallJSON(ctx, &opts, &request, &created)
	if err != nil {
		return "", translateError("subscribe", "/", resp, err)
	}
	return created.ID, nil
}

// UpdateSubscription extends the expiry of an existing subscription.
func (f *Fs) UpdateSubscription(ctx context.Context, id string, expiration time.Time) error {
	request := api.UpdateSubscriptionRequest{
		ExpirationDateTime: api.Timestamp(expiration),
	}
	opts := rest.Opts{
		Method:     "PATCH",
		Path:       "/subscriptions/" + id,
		NoResponse: true,
	}
	resp, err := f.srv.CallJSON(ctx, &opts, &request, nil)
	return translateError("subscribe", "/", resp, err)
}

// DeleteSubscription removes a subscription.
func (f *Fs) DeleteSubscription(ctx context.Context, id string) error {
	opts := rest.Opts{
		Method:     "DELETE",
		Path:       "/subscriptions/" + id,
		NoResponse: true,
	}
	resp, err := f.srv.Call(ctx, &opts)
	return translateError("subscribe", "/", resp, err)
}
