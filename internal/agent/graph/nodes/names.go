package nodes

// Node keys of the off-script answer graph.
const (
	NodeRetriever         = "Retriever"
	NodeCannedAnswer      = "CannedAnswer"
	NodeResponseAssembler = "ResponseAssembler"
	NodeResponseChatModel = "ResponseChatModel"
	NodeGeneratedAnswer   = "GeneratedAnswer"
)
