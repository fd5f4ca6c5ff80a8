package rpccommon

import (
	"fmt"
	"io"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"reflect"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/sumprime/sumprime/pkg/logflags"
	"github.com/sumprime/sumprime/pkg/version"
	"github.com/sumprime/sumprime/service"
	"github.com/sumprime/sumprime/service/api"
	"github.com/sumprime/sumprime/service/coordinator"
	"github.com/sumprime/sumprime/service/rpc2"
)

// APIVersion is the version of the API served.
const APIVersion = 2

var _ service.Server = (*ServerImpl)(nil)

// ServerImpl implements a JSON-RPC server exposing a coordinator.
type ServerImpl struct {
	// config is all the information necessary to start the coordinator and server.
	config *service.Config
	// listener is used to serve JSON-RPC.
	listener net.Listener
	// stopChan is used to stop the listener goroutine.
	stopChan chan struct{}
	stopOnce sync.Once
	// coordinator hands out the jobs.
	coordinator *coordinator.Coordinator
	// s2 is the coordinator API server.
	s2 *rpc2.RPCServer
	// methodMap contains every served method.
	methodMap map[string]*methodType

	log logflags.Logger
}

// RPCServer implements the RPC method calls that do not depend on the
// coordinator.
type RPCServer struct {
	s *ServerImpl
}

type methodType struct {
	method    reflect.Method
	Rcvr      reflect.Value
	ArgType   reflect.Type
	ReplyType reflect.Type
}

// NewServer creates a new RPCServer.
func NewServer(config *service.Config) *ServerImpl {
	return &ServerImpl{
		config:   config,
		listener: config.Listener,
		stopChan: make(chan struct{}),
		log:      logflags.RPCLogger(),
	}
}

// Stop stops the JSON-RPC server.
func (s *ServerImpl) Stop() error {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	return s.listener.Close()
}

// Coordinator returns the coordinator created by Run.
func (s *ServerImpl) Coordinator() *coordinator.Coordinator {
	return s.coordinator
}

// Run creates the coordinator and starts accepting connections on the
// listener. Run does not block, the accept loop runs until Stop is called.
func (s *ServerImpl) Run() error {
	var err error
	if s.coordinator, err = coordinator.New(coordinator.Config{
		Limit:     s.config.Limit,
		Chunks:    s.config.Chunks,
		Lease:     s.config.Lease,
		StorePath: s.config.StorePath,
	}); err != nil {
		return err
	}

	s.s2 = rpc2.NewServer(s.config, s.coordinator)
	rpcServer := &RPCServer{s}

	s.methodMap = map[string]*methodType{}
	suitableMethods(s.s2, s.methodMap, s.log)
	suitableMethods(rpcServer, s.methodMap, s.log)

	go func() {
		defer s.listener.Close()
		for {
			c, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.stopChan:
					// We were supposed to exit, do nothing and return
					return
				default:
					s.log.Errorf("accept failed: %v", err)
					return
				}
			}
			s.log.Debugf("new connection from %s", c.RemoteAddr())
			if !s.config.AcceptMulti {
				go func() {
					s.serveJSONCodec(c)
					if s.config.DisconnectChan != nil {
						close(s.config.DisconnectChan)
					}
				}()
				break
			}
			go s.serveJSONCodec(c)
		}
	}()
	return nil
}

// ServeConn serves the API on conn, which does not have to come from the
// listener. It must be called after Run and does not block.
func (s *ServerImpl) ServeConn(conn io.ReadWriteCloser) {
	go s.serveJSONCodec(conn)
}

// Precompute the reflect type for error.  Can't use error directly
// because Typeof takes an empty interface value.  This is annoying.
var typeOfError = reflect.TypeOf((*error)(nil)).Elem()

// Is this an exported - upper case - name?
func isExported(name string) bool {
	ch, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(ch)
}

// Is this type exported or a builtin?
func isExportedOrBuiltinType(t reflect.Type) bool {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	// PkgPath will be non-empty even for an exported type,
	// so we need to check the type name as well.
	return isExported(t.Name()) || t.PkgPath() == ""
}

// Fills methods map with the methods of receiver that should be made
// available through the RPC interface.
// These are all the public methods of rcvr that have the signature:
//
//	func (rcvr ReceiverType) Method(in InputType, out *ReplyType) error
func suitableMethods(rcvr interface{}, methods map[string]*methodType, log logflags.Logger) {
	typ := reflect.TypeOf(rcvr)
	rcvrv := reflect.ValueOf(rcvr)
	sname := reflect.Indirect(rcvrv).Type().Name()
	if sname == "" {
		log.Errorf("rpc.Register: no service name for type %s", typ)
		return
	}
	for m := 0; m < typ.NumMethod(); m++ {
		method := typ.Method(m)
		mname := method.Name
		mtype := method.Type
		// method must be exported
		if method.PkgPath != "" {
			continue
		}
		// Method needs three ins: (receiver, *args, *reply)
		if mtype.NumIn() != 3 {
			log.Debugf("method %s has wrong number of ins: %d", mname, mtype.NumIn())
			continue
		}
		// First arg need not be a pointer.
		argType := mtype.In(1)
		if !isExportedOrBuiltinType(argType) {
			log.Debugf("%s argument type not exported: %v", mname, argType)
			continue
		}
		replyType := mtype.In(2)
		// Second arg must be a pointer.
		if replyType.Kind() != reflect.Ptr {
			log.Debugf("method %s reply type not a pointer: %v", mname, replyType)
			continue
		}
		// Reply type must be exported.
		if !isExportedOrBuiltinType(replyType) {
			log.Debugf("method %s reply type not exported: %v", mname, replyType)
			continue
		}
		// Method needs one out.
		if mtype.NumOut() != 1 {
			log.Debugf("method %s has wrong number of outs: %d", mname, mtype.NumOut())
			continue
		}
		// The return type of the method must be error.
		if returnType := mtype.Out(0); returnType != typeOfError {
			log.Debugf("method %s returns %s not error", mname, returnType.String())
			continue
		}
		methods[sname+"."+mname] = &methodType{method: method, ArgType: argType, ReplyType: replyType, Rcvr: rcvrv}
	}
}

func (s *ServerImpl) serveJSONCodec(conn io.ReadWriteCloser) {
	sending := new(sync.Mutex)
	codec := jsonrpc.NewServerCodec(conn)
	var req rpc.Request
	var resp rpc.Response
	for {
		req = rpc.Request{}
		err := codec.ReadRequestHeader(&req)
		if err != nil {
			if err != io.EOF {
				s.log.Errorf("rpc: %v", err)
			}
			break
		}

		mtype, ok := s.methodMap[req.ServiceMethod]
		if !ok {
			s.log.Errorf("rpc: can't find method %s", req.ServiceMethod)
			if err := codec.ReadRequestBody(nil); err != nil {
				break
			}
			resp = rpc.Response{}
			s.sendResponse(sending, &req, &resp, nil, codec, fmt.Sprintf("unknown method: %s", req.ServiceMethod))
			continue
		}

		var argv, replyv reflect.Value

		// Decode the argument value.
		argIsValue := false // if true, need to indirect before calling.
		if mtype.ArgType.Kind() == reflect.Ptr {
			argv = reflect.New(mtype.ArgType.Elem())
		} else {
			argv = reflect.New(mtype.ArgType)
			argIsValue = true
		}
		// argv guaranteed to be a pointer now.
		if err = codec.ReadRequestBody(argv.Interface()); err != nil {
			break
		}
		if argIsValue {
			argv = argv.Elem()
		}

		if logflags.RPC() {
			s.log.Debugf("<- %s(%T%+v)", req.ServiceMethod, argv.Interface(), argv.Interface())
		}

		replyv = reflect.New(mtype.ReplyType.Elem())
		function := mtype.method.Func
		returnValues := function.Call([]reflect.Value{mtype.Rcvr, argv, replyv})
		errInter := returnValues[0].Interface()
		errmsg := ""
		if errInter != nil {
			errmsg = errInter.(error).Error()
		}
		if logflags.RPC() {
			s.log.Debugf("-> %T%+v error: %q", replyv.Interface(), replyv.Interface(), errmsg)
		}
		resp = rpc.Response{}
		s.sendResponse(sending, &req, &resp, replyv.Interface(), codec, errmsg)
	}
	codec.Close()
}

// A value sent as a placeholder for the server's response value when the server
// receives an invalid request. It is never decoded by the client since the Response
// contains an error when it is used.
var invalidRequest = struct{}{}

func (s *ServerImpl) sendResponse(sending *sync.Mutex, req *rpc.Request, resp *rpc.Response, reply interface{}, codec rpc.ServerCodec, errmsg string) {
	resp.ServiceMethod = req.ServiceMethod
	if errmsg != "" {
		resp.Error = errmsg
		reply = invalidRequest
	}
	resp.Seq = req.Seq
	sending.Lock()
	defer sending.Unlock()
	err := codec.WriteResponse(resp, reply)
	if err != nil {
		s.log.Errorf("writing response: %v", err)
	}
}

// GetVersion returns the version of sumprime as well as the API version
// currently served.
func (s *RPCServer) GetVersion(args api.GetVersionIn, out *api.GetVersionOut) error {
	out.SumprimeVersion = version.SumprimeVersion.String()
	out.APIVersion = APIVersion
	return nil
}
