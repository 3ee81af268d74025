package mitm

import (
	"errors"
	"net"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/hashicorp/go-hclog"

	"github.com/kanti-proxy/kanti/internal/mocks"
)

func TestInterceptReturnsWhenLeafIssuanceFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	issuer := mocks.NewMockLeafIssuer(ctrl)
	issuer.EXPECT().LeafFor("secure.test").Return(nil, errors.New("issuance failed"))

	engine := &Engine{logger: hclog.NewNullLogger(), leafs: issuer}

	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()

	done := make(chan struct{})
	go func() {
		engine.intercept(clientConn, "secure.test")
		close(done)
	}()

	<-done
}
