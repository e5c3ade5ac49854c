package config

type WorkerKeyStruct struct {
	OwnerIndexQueue string
}

var WorkerKey = &WorkerKeyStruct{
	OwnerIndexQueue: "owner_index_queue",
}
