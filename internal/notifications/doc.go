// Package notifications delivers pipeline events to the lab's chat channels.
//
// Events are rendered once into a title, message, tags and priority, then
// handed to every configured transport: ntfy (plain HTTP POST to a topic URL)
// and Slack (chat.postMessage with a bot token). With neither configured a
// no-op service is returned. Delivery is best effort; callers log failures
// and carry on.
package notifications
