package reconcile

// IncomingKind is the closed set of observations a watcher can deliver to
// the reconciler.
type IncomingKind string

const (
	KindDidFinishGatheringLocal IncomingKind = "DidFinishGatheringLocal"
	KindDidFinishGatheringCloud IncomingKind = "DidFinishGatheringCloud"
	KindDidUpdateLocal          IncomingKind = "DidUpdateLocal"
	KindDidUpdateCloud          IncomingKind = "DidUpdateCloud"
)

// IncomingEvent is a tagged union over the four observations the
// reconciler can be driven with. Exactly one of Local/Cloud is populated,
// determined by Kind.
type IncomingEvent struct {
	Kind  IncomingKind
	Local LocalSet
	Cloud CloudSet
}

func DidFinishGatheringLocal(set LocalSet) IncomingEvent {
	return IncomingEvent{Kind: KindDidFinishGatheringLocal, Local: set}
}

func DidFinishGatheringCloud(set CloudSet) IncomingEvent {
	return IncomingEvent{Kind: KindDidFinishGatheringCloud, Cloud: set}
}

func DidUpdateLocal(set LocalSet) IncomingEvent {
	return IncomingEvent{Kind: KindDidUpdateLocal, Local: set}
}

func DidUpdateCloud(set CloudSet) IncomingEvent {
	return IncomingEvent{Kind: KindDidUpdateCloud, Cloud: set}
}

// OutgoingKind is the closed set of actions the reconciler can ask the
// orchestrator to dispatch.
type OutgoingKind string

const (
	KindCreateLocal                OutgoingKind = "CreateLocal"
	KindUpdateLocal                OutgoingKind = "UpdateLocal"
	KindRemoveLocal                OutgoingKind = "RemoveLocal"
	KindStartDownloading           OutgoingKind = "StartDownloading"
	KindCreateCloud                OutgoingKind = "CreateCloud"
	KindUpdateCloud                OutgoingKind = "UpdateCloud"
	KindRemoveCloud                OutgoingKind = "RemoveCloud"
	KindResolveVersionsConflict    OutgoingKind = "ResolveVersionsConflict"
	KindResolveInitialSyncConflict OutgoingKind = "ResolveInitialSyncConflict"
	KindDidFinishInitialSync       OutgoingKind = "DidFinishInitialSync"
	KindDidReceiveError            OutgoingKind = "DidReceiveError"
)

// OutgoingEvent is a tagged union over the actions produced by a single
// resolve() call. Which of Cloud/Local/Err is populated is determined by
// Kind; see the constructors below.
type OutgoingEvent struct {
	Kind  OutgoingKind
	Cloud CloudItem
	Local LocalItem
	Err   *SyncError
}

func CreateLocal(c CloudItem) OutgoingEvent { return OutgoingEvent{Kind: KindCreateLocal, Cloud: c} }
func UpdateLocal(c CloudItem) OutgoingEvent { return OutgoingEvent{Kind: KindUpdateLocal, Cloud: c} }
func RemoveLocal(c CloudItem) OutgoingEvent { return OutgoingEvent{Kind: KindRemoveLocal, Cloud: c} }
func StartDownloading(c CloudItem) OutgoingEvent {
	return OutgoingEvent{Kind: KindStartDownloading, Cloud: c}
}
func CreateCloud(l LocalItem) OutgoingEvent { return OutgoingEvent{Kind: KindCreateCloud, Local: l} }
func UpdateCloud(l LocalItem) OutgoingEvent { return OutgoingEvent{Kind: KindUpdateCloud, Local: l} }
func RemoveCloud(l LocalItem) OutgoingEvent { return OutgoingEvent{Kind: KindRemoveCloud, Local: l} }
func ResolveVersionsConflict(c CloudItem) OutgoingEvent {
	return OutgoingEvent{Kind: KindResolveVersionsConflict, Cloud: c}
}
func ResolveInitialSyncConflict(l LocalItem) OutgoingEvent {
	return OutgoingEvent{Kind: KindResolveInitialSyncConflict, Local: l}
}
func DidFinishInitialSync() OutgoingEvent {
	return OutgoingEvent{Kind: KindDidFinishInitialSync}
}
func DidReceiveError(err *SyncError) OutgoingEvent {
	return OutgoingEvent{Kind: KindDidReceiveError, Err: err}
}

// Name returns the item name the event pertains to, or "" for events that
// carry none (DidFinishInitialSync, DidReceiveError with no item).
func (e OutgoingEvent) Name() string {
	switch e.Kind {
	case KindCreateLocal, KindUpdateLocal, KindRemoveLocal, KindStartDownloading, KindResolveVersionsConflict:
		return e.Cloud.Name
	case KindCreateCloud, KindUpdateCloud, KindRemoveCloud, KindResolveInitialSyncConflict:
		return e.Local.Name
	case KindDidReceiveError:
		if e.Err != nil {
			return e.Err.Item
		}
	}
	return ""
}
