package domain

var Tables = []interface{}{
	// System
	&SysConfig{},
	// Orchestration
	&WorkerServer{},
	&DeviceSession{},
}
