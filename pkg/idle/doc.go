// Package idle detects whether a user is active or idle.
//
// A Detector observes named signals delivered by a host: activity signals
// such as "keydown" keep it Active and rearm its idle timer, inactivity
// signals such as "blur" force it Idle, and the document's visibility
// change makes it Idle while hidden. When the timer expires without
// further activity the detector goes Idle.
//
//	d, err := idle.New(env, idle.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	d.OnIdle(func() { fmt.Println("away") })
//	d.OnActive(func() { fmt.Println("back") })
//	defer d.Stop()
package idle
