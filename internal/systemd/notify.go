package systemd

import (
	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/ngenohkevin/hftp/internal/log"
)

// NotifyReady tells systemd the server is accepting connections. It reports
// whether a notification socket was present.
func NotifyReady() bool {
	return notify(daemon.SdNotifyReady)
}

// NotifyStopping tells systemd a shutdown has begun
func NotifyStopping() bool {
	return notify(daemon.SdNotifyStopping)
}

// NotifyStatus sets the free-form status line shown by systemctl status
func NotifyStatus(status string) bool {
	return notify("STATUS=" + status)
}

func notify(state string) bool {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Warn("sd_notify %q failed: %v", state, err)
		return false
	}
	if sent {
		log.Debug("sd_notify %q sent", state)
	}
	return sent
}
